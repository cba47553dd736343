package models

import (
	"io"
)

// Reference to a binary object kept in the object store
// The store owns the bytes, the record holding MediaObject owns the reference
type MediaObject struct {
	ID  string
	URL string
}

func (o MediaObject) IsZero() bool {
	return o.ID == ""
}

// Local bytes to be sent to the object store
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}
