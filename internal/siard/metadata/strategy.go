package metadata

import (
	"bytes"

	"db-siard/internal/failure"
	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/write"
)

// Strategy writes the header entries of one container.
type Strategy struct {
	w       write.Strategy
	opts    EncodeOptions
	written bool
}

func NewStrategy(w write.Strategy, opts EncodeOptions) *Strategy {
	return &Strategy{w: w, opts: opts}
}

// Write stores metadata.xml, metadata.xsd and the version marker. It must run
// after every table is closed, since row counts come from the content pass.
// A second call fails.
func (s *Strategy) Write(db *schema.DatabaseStructure) error {
	if s.written {
		return failure.Operationf("write metadata", "descriptor already written")
	}
	var buf bytes.Buffer
	if err := Encode(&buf, db, s.opts); err != nil {
		return err
	}
	if err := s.entry(siard.MetadataXML, buf.Bytes()); err != nil {
		return err
	}
	if err := s.entry(siard.MetadataXSD, XSD); err != nil {
		return err
	}
	if err := s.entry(siard.VersionDir, nil); err != nil {
		return err
	}
	s.written = true
	return nil
}

func (s *Strategy) entry(name string, data []byte) error {
	out, err := s.w.Open(name)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := out.Write(data); err != nil {
			s.w.Close()
			return failure.Operation("write "+name, err)
		}
	}
	return s.w.Close()
}
