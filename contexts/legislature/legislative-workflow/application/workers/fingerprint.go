package workers

import (
	"crypto/sha256"
	"encoding/hex"
)

// eventFingerprint identifies a delivery by event type and payload so a
// redelivered event id carrying different content is detected.
func eventFingerprint(eventType string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(eventType))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// notificationID is stable per event and recipient so a redelivery rewrites
// nothing it already stored.
func notificationID(eventID string, recipientID string) string {
	sum := sha256.Sum256([]byte(eventID + "\x00" + recipientID))
	return "ntf-" + hex.EncodeToString(sum[:16])
}
