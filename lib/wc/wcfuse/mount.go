// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

// Package wcfuse exposes a WCROOT's pristine object store read-only
// over FUSE: one file per digest, named by its "{kind}:{hex}" checksum
// text with the colon replaced by an underscore (FUSE path components
// cannot contain the store's own separator unambiguously across all
// client tools). Content is transparently decrypted and decompressed
// by the time it reaches a reader.
//
// This is a convenience adjunct for tooling (diff viewers, external
// editors) that wants POSIX access to base texts without going
// through the pristine_read API directly. It must never sit on the
// write path the core node-model operations depend on, so it only
// ever calls the public PristineRead/PristineCheck surface.
package wcfuse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/graftvc/graft/lib/checksum"
	"github.com/graftvc/graft/lib/wc"
)

// Options configures the mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Store provides read access to pristine blobs.
	Store *wc.DB

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// PristineName returns the filesystem-safe entry name a digest
// appears under inside the mount, so a caller that already knows a
// node's checksum can build the path to its mounted pristine without
// a directory listing.
func PristineName(digest checksum.Checksum) string {
	return strings.ReplaceAll(digest.String(), ":", "_")
}

func decodeName(name string) (checksum.Checksum, error) {
	text := strings.Replace(name, "_", ":", 1)
	return checksum.Parse(text)
}

// Mount mounts the pristine-store FUSE filesystem at the configured
// mountpoint. The caller must call Unmount on the returned Server when
// done. The mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("wcfuse: mountpoint is required")
	}
	if options.Store == nil {
		return nil, fmt.Errorf("wcfuse: store is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("wcfuse: creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "graft-pristine",
			Name:       "graft",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wcfuse: mounting at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("pristine FUSE filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// rootNode is the filesystem root: a flat directory of pristine blobs
// looked up by encoded checksum name. Unlike the teacher's artifact
// mount, there is no tag namespace and no chunked reconstruction — a
// pristine blob is read whole through PristineRead.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	digest, err := decodeName(name)
	if err != nil {
		return nil, syscall.ENOENT
	}

	present, err := r.options.Store.PristineCheck(digest, wc.PristineBoth)
	if err != nil {
		r.options.Logger.Error("pristine check failed", "name", name, "error", err)
		return nil, syscall.EIO
	}
	if !present {
		return nil, syscall.ENOENT
	}

	node := &pristineFileNode{options: r.options, digest: digest}
	child := r.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o444
	return child, 0
}

// pristineFileNode represents a single pristine blob as a read-only
// regular file. Content is loaded in full on Open since pristine
// blobs are bounded by a single versioned file's size, unlike the
// multi-gigabyte artifacts the teacher's mount streams in chunks.
type pristineFileNode struct {
	gofuse.Inode
	options *Options
	digest  checksum.Checksum

	content []byte
}

var _ gofuse.InodeEmbedder = (*pristineFileNode)(nil)
var _ gofuse.NodeOpener = (*pristineFileNode)(nil)
var _ gofuse.NodeReader = (*pristineFileNode)(nil)
var _ gofuse.NodeGetattrer = (*pristineFileNode)(nil)

func (p *pristineFileNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(len(p.content))
	return 0
}

func (p *pristineFileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	reader, err := p.options.Store.PristineRead(p.digest)
	if err != nil {
		p.options.Logger.Error("pristine read failed", "digest", p.digest.String(), "error", err)
		return nil, 0, syscall.EIO
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		p.options.Logger.Error("pristine read failed", "digest", p.digest.String(), "error", err)
		return nil, 0, syscall.EIO
	}
	p.content = content

	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (p *pristineFileNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(p.content)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(p.content)) {
		end = int64(len(p.content))
	}
	return fuse.ReadResultData(p.content[off:end]), 0
}
