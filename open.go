// Package rnaseq holds shared plumbing for the bulk RNA-seq differential
// expression tools: transparent opening of local or Google Storage inputs,
// compression sniffing, and small path helpers.
package rnaseq

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

// GSReadSeekCloser decorates a Google Storage object handle with io.Reader,
// io.Seeker and io.Closer. Seeking is emulated by closing the range reader
// and reopening at the new offset.
type GSReadSeekCloser struct {
	*storage.ObjectHandle
	Context context.Context
	r       *storage.Reader
	offset  int64
}

func (s *GSReadSeekCloser) Read(buf []byte) (int, error) {
	var err error
	if s.r == nil {
		s.r, err = s.NewRangeReader(s.Context, s.offset, -1)
		if err != nil {
			return 0, err
		}
	}

	return s.r.Read(buf)
}

func (s *GSReadSeekCloser) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekEnd {
		return 0, fmt.Errorf("io.Seeker 'whence' value %d is not implemented", whence)
	}
	if whence == io.SeekCurrent {
		offset += s.offset
	}

	if s.r != nil {
		s.r.Close()
		s.r = nil
	}
	s.offset = offset

	return s.offset, nil
}

func (s *GSReadSeekCloser) Close() error {
	if s.r != nil {
		return s.r.Close()
	}

	return nil
}

// MaybeOpenSeekerFromGoogleStorage opens a local file, unless the path has a
// gs:// prefix and a non-nil client is passed, in which case it opens the
// Google Storage object with default credentials.
func MaybeOpenSeekerFromGoogleStorage(path string, client *storage.Client) (ReadSeekCloser, error) {
	if client != nil && strings.HasPrefix(path, "gs://") {
		pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(pathParts) != 2 {
			return nil, fmt.Errorf("tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
		}

		handle := client.Bucket(pathParts[0]).Object(pathParts[1])

		// Make a hard call so that a bad path fails here rather than at the
		// first Read.
		ctx := context.Background()
		if _, err := handle.Attrs(ctx); err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
		}

		return &GSReadSeekCloser{ObjectHandle: handle, Context: ctx}, nil
	}

	return os.Open(ExpandHome(path))
}

// Open opens a count matrix, annotation dump, or sample sheet from a local
// path or a gs:// URL, decompressing it if it carries a known compression
// signature. The caller is responsible for calling Close.
func Open(path string, client *storage.Client) (io.ReadCloser, error) {
	f, err := MaybeOpenSeekerFromGoogleStorage(path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}

	rc, err := MaybeDecompress(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
	}

	return &closerChain{ReadCloser: rc, underlying: f}, nil
}

// closerChain closes the decompressor first, then the underlying file or
// storage object.
type closerChain struct {
	io.ReadCloser
	underlying io.Closer
}

func (c *closerChain) Close() error {
	err := c.ReadCloser.Close()
	if uErr := c.underlying.Close(); err == nil {
		err = uErr
	}

	return err
}
