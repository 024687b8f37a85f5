// Package legislativeworkflow implements the legislative workflow of the
// assembly: bill submission, conference review, study bureau analysis,
// plenary scheduling and the single-session plenary vote.
//
// Status changes happen only through the application use cases, which run
// inside a unit of work and record their events in a transactional outbox.
// Workers relay those events to the bus and turn them into member
// notifications.
package legislativeworkflow
