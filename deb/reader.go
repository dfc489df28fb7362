package deb

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Entry is a single member of the data archive.
type Entry struct {
	Name     string
	Mode     int64
	Typeflag byte
	Linkname string
	Body     []byte
}

// Contents is the parsed form of a .deb file. It exists for inspection
// and verification; assembly goes the other way through Archive.
type Contents struct {
	Control   string
	Md5sums   string
	Conffiles []string
	Triggers  string
	Scripts   map[ControlFile]string
	Entries   []Entry
}

// Read parses a .deb from r.
func Read(r io.Reader) (*Contents, error) {
	c := &Contents{Scripts: make(map[ControlFile]string)}

	arR := ar.NewReader(r)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar header: %w", err)
		}
		name := strings.TrimSuffix(header.Name, "/")

		switch {
		case strings.HasPrefix(name, "control.tar"):
			if err := c.readControl(name, arR); err != nil {
				return nil, err
			}
		case strings.HasPrefix(name, "data.tar"):
			if err := c.readData(name, arR); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Field extracts a single field value from the control paragraph.
func (c *Contents) Field(field ControlField) string {
	for _, line := range strings.Split(c.Control, "\n") {
		if v, ok := strings.CutPrefix(line, string(field)+": "); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// File returns the data entry at the given "./"-rooted path.
func (c *Contents) File(name string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

func (c *Contents) readControl(member string, r io.Reader) error {
	tr, err := tarReader(member, r)
	if err != nil {
		return err
	}
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading control member: %w", err)
		}
		if th.Typeflag == tar.TypeDir {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("reading %s: %w", th.Name, err)
		}
		switch name := ControlFile(path.Base(th.Name)); name {
		case FileControl:
			c.Control = buf.String()
		case FileMd5sums:
			c.Md5sums = buf.String()
		case FileConffiles:
			c.Conffiles = strings.Split(strings.TrimSpace(buf.String()), "\n")
		case FileTriggers:
			c.Triggers = buf.String()
		case FilePreinst, FilePostinst, FilePrerm, FilePostrm, FileConfig, FileTemplates:
			c.Scripts[name] = buf.String()
		}
	}
}

func (c *Contents) readData(member string, r io.Reader) error {
	tr, err := tarReader(member, r)
	if err != nil {
		return err
	}
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading data member: %w", err)
		}
		e := Entry{
			Name:     th.Name,
			Mode:     th.Mode,
			Typeflag: th.Typeflag,
			Linkname: th.Linkname,
		}
		if th.Typeflag == tar.TypeReg {
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, tr); err != nil {
				return fmt.Errorf("reading file %s: %w", th.Name, err)
			}
			e.Body = buf.Bytes()
		}
		c.Entries = append(c.Entries, e)
	}
}

func tarReader(member string, r io.Reader) (*tar.Reader, error) {
	switch {
	case strings.HasSuffix(member, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", member, err)
		}
		return tar.NewReader(zr), nil
	case strings.HasSuffix(member, ".xz"):
		zr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", member, err)
		}
		return tar.NewReader(zr), nil
	}
	return tar.NewReader(r), nil
}
