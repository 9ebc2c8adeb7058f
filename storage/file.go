package storage

import (
	"fmt"
	"os"

	"github.com/brettbedarf/shellstore/native"
	"github.com/gabriel-vasile/mimetype"
)

// File is a non-container item.
type File struct {
	entity
}

func newFile(item *native.Item) *File {
	return &File{entity{handle: Attach(item)}}
}

func (f *File) IsFolder() bool { return false }

// ContentType sniffs the file's MIME type from its content.
func (f *File) ContentType() (string, error) {
	mtype, err := mimetype.DetectFile(f.ID())
	if err != nil {
		return "", fmt.Errorf("failed to detect content type: %w", err)
	}
	return mtype.String(), nil
}

// Size returns the current size in bytes.
func (f *File) Size() (int64, error) {
	fi, err := os.Stat(f.ID())
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
