package native

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/charlievieth/fastwalk"
)

// execute carries out one queued operation and returns the item it
// produced, if any, with a reference count of one.
func (f *FileOperation) execute(q *queuedOp) (Status, *Item) {
	switch q.kind {
	case opCopy:
		src := q.item.path
		target := filepath.Join(q.dest.path, nameOr(q.name, src))
		if target == src {
			target = uniquePath(target)
		}
		if overlaps(src, target) {
			return StatusInvalidArg, nil
		}
		target, st := f.resolveTarget(target)
		if st.Failed() {
			return st, nil
		}
		if err := copyTree(src, target); err != nil {
			return StatusFromError(err), nil
		}
		return created(target)
	case opMove:
		src := q.item.path
		target := filepath.Join(q.dest.path, nameOr(q.name, src))
		if target == src {
			return created(target)
		}
		if overlaps(src, target) {
			return StatusInvalidArg, nil
		}
		target, st := f.resolveTarget(target)
		if st.Failed() {
			return st, nil
		}
		if err := moveTree(src, target); err != nil {
			return StatusFromError(err), nil
		}
		return created(target)
	case opRename:
		src := q.item.path
		target := filepath.Join(filepath.Dir(src), q.name)
		if target == src {
			return created(target)
		}
		target, st := f.resolveTarget(target)
		if st.Failed() {
			return st, nil
		}
		if err := os.Rename(src, target); err != nil {
			return StatusFromError(err), nil
		}
		return created(target)
	case opDelete:
		return f.remove(q.item.path)
	case opNew:
		target, st := f.resolveTarget(filepath.Join(q.dest.path, q.name))
		if st.Failed() {
			return st, nil
		}
		if err := newEntry(target, q.attrs, q.template); err != nil {
			return StatusFromError(err), nil
		}
		return created(target)
	}
	return StatusUnexpected, nil
}

func (f *FileOperation) remove(path string) (Status, *Item) {
	if _, err := os.Lstat(path); err != nil {
		return StatusFromError(err), nil
	}
	if f.flags&FlagAllowUndo != 0 && f.recycleDir != "" {
		if err := os.MkdirAll(f.recycleDir, 0o700); err != nil {
			return StatusFromError(err), nil
		}
		target := uniquePath(filepath.Join(f.recycleDir, filepath.Base(path)))
		if err := moveTree(path, target); err != nil {
			return StatusFromError(err), nil
		}
		return created(target)
	}
	if err := os.RemoveAll(path); err != nil {
		return StatusFromError(err), nil
	}
	return StatusOK, nil
}

// resolveTarget applies the collision policy to a destination path.
func (f *FileOperation) resolveTarget(target string) (string, Status) {
	_, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return target, StatusOK
	}
	if err != nil {
		return "", StatusFromError(err)
	}
	switch {
	case f.flags&FlagRenameOnCollision != 0:
		return uniquePath(target), StatusOK
	case f.flags&FlagNoConfirmation != 0:
		if err := os.RemoveAll(target); err != nil {
			return "", StatusFromError(err)
		}
		return target, StatusOK
	}
	return "", StatusAlreadyExists
}

func created(path string) (Status, *Item) {
	attrs, st := statAttributes(path)
	if st.Failed() {
		return StatusOK, nil
	}
	return StatusOK, newItem(path, attrs)
}

func nameOr(name, src string) string {
	if name != "" {
		return name
	}
	return filepath.Base(src)
}

// overlaps reports whether either path is, or lies below, the other. Such a
// target can be neither written into nor replaced without losing src.
func overlaps(src, target string) bool {
	return within(target, src) || within(src, target)
}

// within reports whether path is root or lies below it.
func within(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// uniquePath returns path, or "name (n).ext" for the first free n >= 2.
func uniquePath(path string) string {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

func newEntry(target string, attrs FileAttributes, template string) error {
	switch {
	case attrs&FileAttributeDirectory != 0:
		if err := os.Mkdir(target, 0o755); err != nil {
			return err
		}
	case template != "":
		fi, err := os.Stat(template)
		if err != nil {
			return err
		}
		if err := copyEntry(template, target, fi); err != nil {
			return err
		}
	default:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if attrs&FileAttributeReadOnly != 0 {
		fi, err := os.Stat(target)
		if err != nil {
			return err
		}
		return os.Chmod(target, fi.Mode().Perm()&^0o222)
	}
	return nil
}

func moveTree(src, dst string) error {
	err := os.Rename(src, dst)
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyTree(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyTree(src, dst string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return copyEntry(src, dst, fi)
	}
	if err := os.MkdirAll(dst, fi.Mode().Perm()|0o700); err != nil {
		return err
	}
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == src {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return copyEntry(p, target, info)
	})
}

func copyEntry(src, dst string, fi fs.FileInfo) error {
	if fi.Mode()&fs.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(link, dst)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if fi.Mode().Perm()&0o200 == 0 {
		if err := os.Chmod(dst, fi.Mode().Perm()); err != nil {
			return err
		}
	}
	return os.Chtimes(dst, fi.ModTime(), fi.ModTime())
}

// workUnits is the progress weight of an operation: the number of entries
// a copy or move touches, otherwise one.
func (q *queuedOp) workUnits() uint32 {
	if q.kind != opCopy && q.kind != opMove {
		return 1
	}
	fi, err := os.Lstat(q.item.path)
	if err != nil || !fi.IsDir() {
		return 1
	}
	var n atomic.Uint32
	conf := fastwalk.Config{Follow: false}
	_ = fastwalk.Walk(&conf, q.item.path, func(string, os.DirEntry, error) error {
		n.Add(1)
		return nil
	})
	return max(n.Load(), 1)
}
