package elfimage

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type File struct {
	Name     string
	Contents []byte
}

func NewFile(fs afero.Fs, filename string) (*File, error) {
	contents, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, errors.Wrap(err, "could not open ELF file")
	}
	return &File{
		Name:     filename,
		Contents: contents,
	}, nil
}
