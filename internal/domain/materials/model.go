package materials

import (
	"io"
	"time"
)

// Material is a file attached to a patient. File is the blob store key.
type Material struct {
	ID        int64
	PatientID int64
	File      string
	Created   time.Time
	Updated   time.Time
}

// Upload is a file received from a client.
type Upload struct {
	Name    string
	Content io.Reader
}

// blobDir is the store directory material files are written under.
const blobDir = "materials"

const (
	msgNoFile     = "No file was submitted."
	msgEmptyFile  = "The submitted file is empty."
	msgNoFileName = "No filename could be determined."
)
