// Package loader turns command-line file specs (raw binaries and ELF
// images) into section additions against an *image.Image. Discovering
// what to add — stat'ing raw files, parsing ELF program headers — runs
// concurrently across specs via errgroup, the way gcsfuse's own
// integration tests fan out concurrent file work; the Image itself is
// single-threaded (spec.md §5), so every Add call runs back on the
// calling goroutine once discovery finishes.
package loader

import (
	"context"
	"debug/elf"
	"os"

	"github.com/gotrace/ptimage/internal/asid"
	"github.com/gotrace/ptimage/internal/image"
	"github.com/gotrace/ptimage/internal/logger"
	"github.com/gotrace/ptimage/internal/pterrors"
	"golang.org/x/sync/errgroup"
)

// RawSpec describes a "--raw file:vaddr" argument: the whole file is
// mapped at vaddr.
type RawSpec struct {
	Path  string
	VAddr uint64
}

// ELFSpec describes a "--elf file[:base]" argument: every PT_LOAD
// segment is mapped at its own vaddr plus base.
type ELFSpec struct {
	Path string
	Base *uint64
}

// section is one file-backed range discovered from a spec, ready to
// become an image.AddFile call.
type section struct {
	path         string
	offset, size uint64
	vaddr        uint64
}

// LoadAll discovers every section named by raws and elfs concurrently,
// then adds them to img, in spec order, under a. It stops at the first
// Add failure, matching ptxed's own load_raw/load_elf behavior of
// aborting on the first file it can't place.
func LoadAll(ctx context.Context, img *image.Image, a asid.ASID, raws []RawSpec, elfs []ELFSpec) error {
	const op = "loader.LoadAll"

	groups := make([][]section, len(raws)+len(elfs))

	g, _ := errgroup.WithContext(ctx)
	for i, spec := range raws {
		i, spec := i, spec
		g.Go(func() error {
			secs, err := discoverRaw(spec)
			if err != nil {
				return err
			}
			groups[i] = secs
			return nil
		})
	}
	for j, spec := range elfs {
		idx, spec := len(raws)+j, spec
		g.Go(func() error {
			secs, err := discoverELF(spec)
			if err != nil {
				return err
			}
			groups[idx] = secs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pterrors.Wrap(pterrors.Invalid, op, err)
	}

	for _, secs := range groups {
		for _, s := range secs {
			logger.Tracef("loader: adding %s [0x%x,0x%x) at 0x%x", s.path, s.offset, s.offset+s.size, s.vaddr)
			if err := image.AddFile(img, s.path, s.offset, s.size, a, s.vaddr); err != nil {
				return err
			}
		}
	}
	return nil
}

func discoverRaw(spec RawSpec) ([]section, error) {
	const op = "loader.discoverRaw"

	fi, err := os.Stat(spec.Path)
	if err != nil {
		return nil, pterrors.Wrap(pterrors.Invalid, op, err)
	}
	if fi.Size() == 0 {
		return nil, pterrors.New(pterrors.Invalid, op, "empty raw file: "+spec.Path)
	}

	return []section{{
		path:   spec.Path,
		offset: 0,
		size:   uint64(fi.Size()),
		vaddr:  spec.VAddr,
	}}, nil
}

func discoverELF(spec ELFSpec) ([]section, error) {
	const op = "loader.discoverELF"

	f, err := elf.Open(spec.Path)
	if err != nil {
		return nil, pterrors.Wrap(pterrors.Invalid, op, err)
	}
	defer f.Close()

	var secs []section
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}

		vaddr := prog.Vaddr
		if spec.Base != nil {
			vaddr = *spec.Base + prog.Vaddr
		}

		secs = append(secs, section{
			path:   spec.Path,
			offset: prog.Off,
			size:   prog.Filesz,
			vaddr:  vaddr,
		})
	}

	if len(secs) == 0 {
		return nil, pterrors.New(pterrors.Invalid, op, "no loadable segments in "+spec.Path)
	}
	return secs, nil
}
