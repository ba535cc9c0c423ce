package receiver

import (
	"os"
	"path/filepath"
)

// Delivery receives a finished transfer: on Finalize, the Receiver
// hands the reconstructed bytes here along with the name and MIME type
// carried in the session metadata. Persistence layout is the
// collaborator's concern, not the Receiver's.
type Delivery interface {
	Deliver(fileName, fileType string, data []byte) error
}

// DiskDelivery writes delivered files into Dir, creating it if needed.
type DiskDelivery struct {
	Dir string
}

// Deliver writes data to Dir joined with the base name of fileName
// (any directory part of fileName is dropped). fileType is accepted to satisfy
// the Delivery contract but isn't otherwise used by a plain disk
// write.
func (d DiskDelivery) Deliver(fileName, fileType string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(d.Dir, filepath.Base(fileName))
	return os.WriteFile(path, data, 0644)
}
