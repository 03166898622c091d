package validate

import (
	"context"
	"regexp"
	"strings"

	"db-siard/internal/siard"
	"db-siard/internal/siard/path"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

type siardStructure struct{ base }

func (s *siardStructure) Validate(ctx context.Context) (Outcome, error) {
	out := Outcome{Passed: true}
	a, err := s.env.Archive()
	if err != nil {
		out.fail("P_4.2-1", s.env.Path, "archive cannot be read: %v", err)
		return out, nil
	}

	header := false
	for _, f := range a.Files() {
		name := f.Name
		top, _, _ := strings.Cut(name, "/")
		switch top {
		case siard.HeaderDir:
			header = true
		case siard.ContentDir:
		default:
			out.fail("P_4.2-1", name, "only header/ and content/ may appear at the top level")
		}
		for _, part := range strings.Split(strings.TrimSuffix(name, "/"), "/") {
			if part == "" || part == "." || part == ".." || !safeName.MatchString(part) {
				out.fail("P_4.2-5", name, "entry name component %q is not portable", part)
				break
			}
		}
	}
	if !header {
		out.fail("P_4.2-2", siard.HeaderDir, "header folder missing")
	}
	for _, required := range []string{siard.MetadataXML, siard.MetadataXSD, siard.VersionDir} {
		if _, ok := a.Entry(required); !ok {
			out.fail("P_4.2-2", required, "required header entry missing")
		}
	}

	cs, bad := a.Contents()
	for _, b := range bad {
		out.fail("P_4.2-3", siard.ContentDir+"/"+b, "content folder must be schemaN/tableM")
	}
	for _, c := range cs {
		for _, name := range []string{path.TableXML(c.SchemaIndex(), c.TableIndex()), path.TableXSD(c.SchemaIndex(), c.TableIndex())} {
			if _, ok := a.Entry(name); !ok {
				out.fail("P_4.2-4", name, "table folder %s lacks this file", c)
			}
		}
	}
	return out, nil
}
