package mutation

// TypeProductDetected is the message type of a Detection on the wire.
const TypeProductDetected = "product-detected"

// Detection is one product signal emitted by the watcher.
type Detection struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	ImageRef  string `json:"imageRef,omitempty"`
	PageURL   string `json:"pageUrl"`
	Seq       uint64 `json:"seq"`       // monotonically increasing per watcher
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}
