package models

// Counter holds a named monotonically increasing sequence
type Counter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}
