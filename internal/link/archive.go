package link

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
	"go.mozilla.org/pkcs7"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
)

// Archive is one memory-mapped library jar on the classpath [NEW]: large
// runtime jars are mapped rather than read fully into memory (grounded in
// saferwall-pe's mmap-based PE reader). Opening is not deferred to the
// first lookup: OpenArchive maps and indexes the jar at once, and
// NewClasspath opens every archive when the classpath is built.
type Archive struct {
	path   string
	file   *os.File
	data   mmap.MMap
	zr     *zip.Reader
	signer string // "" unless a META-INF/*.RSA signature block parsed; the signature is not verified
}

// OpenArchive mmaps path and indexes it as a zip/jar for class lookup.
func OpenArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, j2werr.Newf(j2werr.KindLinkError, "opening library archive %s: %v", path, err)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, j2werr.Newf(j2werr.KindLinkError, "mmap library archive %s: %v", path, err)
	}
	zr, err := zip.NewReader(readerAtBytes(data), int64(len(data)))
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, j2werr.Newf(j2werr.KindLinkError, "indexing library archive %s: %v", path, err)
	}
	a := &Archive{path: path, file: f, data: data, zr: zr}
	a.signer = a.readSigner()
	return a, nil
}

// Close unmaps and closes the underlying archive file.
func (a *Archive) Close() error {
	err1 := a.data.Unmap()
	err2 := a.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// FindClass looks up "<binaryName>.class" in the archive and decodes it,
// returning nil (not an error) if the archive simply doesn't contain it —
// callers try the next classpath entry in that case (spec.md §4.7:
// "searches each registered library path in order and parses the first
// match").
func (a *Archive) FindClass(binaryName string) (*classfile.ClassFile, error) {
	entryName := binaryName + ".class"
	for _, f := range a.zr.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, j2werr.Newf(j2werr.KindLinkError, "opening %s in %s: %v", entryName, a.path, err)
		}
		defer rc.Close()
		cf, err := classfile.Decode(rc)
		if err != nil {
			return nil, err
		}
		return cf, nil
	}
	return nil, nil
}

// Signer returns the signer name parsed from this archive's signature
// block, or "" if the archive is unsigned or its signature did not parse.
// The signature itself is not verified (spec.md §3: "This is a
// diagnostic, not a sandboxing boundary").
func (a *Archive) Signer() string { return a.signer }

// readSigner looks for a META-INF/*.RSA PKCS#7 signature block and, if
// found and parseable, returns a human-readable signer identity [NEW].
// Any failure to parse is silently treated as "unsigned" — signing is
// advisory per §3, never a compile-time gate.
func (a *Archive) readSigner() string {
	for _, f := range a.zr.File {
		if !strings.HasPrefix(f.Name, "META-INF/") || !strings.HasSuffix(f.Name, ".RSA") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		p7, err := pkcs7.Parse(raw)
		if err != nil {
			continue
		}
		cert := p7.GetOnlySigner()
		if cert == nil {
			continue
		}
		return cert.Subject.CommonName
	}
	return ""
}

// Classpath searches a declaration-ordered list of archives for a class
// (spec.md §4.7).
type Classpath struct {
	archives []*Archive
	// Warnings accumulates non-fatal trust diagnostics [NEW]: since
	// signatures are parsed but not verified, every class found in a
	// signed archive is loaded but flagged with a warning rather than
	// failing the compilation (spec.md §6).
	Warnings []string
}

func NewClasspath(paths []string) (*Classpath, error) {
	cp := &Classpath{}
	for _, p := range paths {
		a, err := OpenArchive(p)
		if err != nil {
			return nil, err
		}
		cp.archives = append(cp.archives, a)
	}
	return cp, nil
}

// Find returns the first match across the classpath, or (nil, nil) if no
// archive carries the class.
func (cp *Classpath) Find(binaryName string) (*classfile.ClassFile, error) {
	for _, a := range cp.archives {
		cf, err := a.FindClass(binaryName)
		if err != nil {
			return nil, err
		}
		if cf == nil {
			continue
		}
		if a.Signer() != "" {
			cp.Warnings = append(cp.Warnings, fmt.Sprintf("class %s loaded from signed archive %s (signer %s); signature not independently verified", binaryName, a.path, a.Signer()))
		}
		return cf, nil
	}
	return nil, nil
}

// Close closes every archive on the classpath.
func (cp *Classpath) Close() error {
	var first error
	for _, a := range cp.archives {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type readerAtBytes []byte

func (r readerAtBytes) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r)) {
		return 0, io.EOF
	}
	n := copy(p, r[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
