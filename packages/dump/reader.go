// Package dump
package dump

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"

	"quoteminer/packages/domain"
)

// mediawiki export format: <mediawiki><siteinfo>...<dbname>enwikiquote</dbname>
// </siteinfo><page><title/>[<redirect/>]<revision><text/></revision></page>...
type xmlDump struct {
	XMLName  xml.Name `xml:"mediawiki"`
	SiteInfo struct {
		DBName string `xml:"dbname"`
	} `xml:"siteinfo"`
	Pages []xmlPage `xml:"page"`
}

type xmlPage struct {
	Title    string       `xml:"title"`
	Redirect *xmlRedirect `xml:"redirect"`
	Revision []struct {
		Text string `xml:"text"`
	} `xml:"revision"`
}

type xmlRedirect struct {
	Title string `xml:"title,attr"`
}

// Load reads and decodes the dump at path. The declared language is the
// first two characters of the site dbname. Pages carry the text of their
// latest revision.
func Load(path string) (*domain.Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dump: open %s: %w", path, err)
	}
	defer f.Close()

	var doc xmlDump
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", domain.ErrFormat, path, err)
	}

	if len(doc.SiteInfo.DBName) < 2 {
		return nil, fmt.Errorf("%w: site dbname absent in %s", domain.ErrFormat, path)
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: page list absent in %s", domain.ErrFormat, path)
	}

	d := &domain.Dump{
		Language: doc.SiteInfo.DBName[:2],
		Pages:    make([]domain.Page, 0, len(doc.Pages)),
	}
	for _, p := range doc.Pages {
		page := domain.Page{
			Title:      p.Title,
			IsRedirect: p.Redirect != nil,
		}
		if n := len(p.Revision); n > 0 {
			page.RawContent = p.Revision[n-1].Text
		}
		d.Pages = append(d.Pages, page)
	}

	slog.Info("Dump decoded", "path", path, "language", d.Language, "pages", len(d.Pages))
	return d, nil
}
