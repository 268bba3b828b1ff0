package source

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tdcache/internal/store"
)

// PricesFile reads the human-edited market price file. Layout:
//
//	# comment
//	@ SYSTEM NAME/Station Name
//	   + Category Name
//	      Item Name   <paying> <asking> <demand> <supply> [YYYY-MM-DD HH:MM:SS]
//
// where <demand>/<supply> are unit counts with an optional level suffix
// (L/M/H), "?" for unknown, or "-" for not applicable. It implements
// PriceReader.
type PricesFile struct {
	Path string

	// Now supplies the timestamp for lines without one. Defaults to
	// time.Now.
	Now func() time.Time
}

// Fingerprint returns the fingerprint of the price file.
func (p *PricesFile) Fingerprint() (Fingerprint, error) {
	return FileFingerprint(p.Path)
}

var itemLine = regexp.MustCompile(
	`^(.+?)\s+(\d+)\s+(\d+)\s+(\S+)\s+(\S+)(?:\s+(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}))?$`)

// Read parses the full price file.
func (p *PricesFile) Read() ([]store.PriceRecord, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	var (
		records         []store.PriceRecord
		system, station string
	)

	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue

		case strings.HasPrefix(line, "@"):
			place := strings.TrimSpace(strings.TrimPrefix(line, "@"))
			sys, stn, ok := strings.Cut(place, "/")
			if !ok {
				return nil, fmt.Errorf("%s:%d: malformed station header %q", p.Path, lineNo, line)
			}
			system, station = strings.TrimSpace(sys), strings.TrimSpace(stn)

		case strings.HasPrefix(line, "+"):
			// Category grouping lines are presentational only.
			continue

		default:
			if station == "" {
				return nil, fmt.Errorf("%s:%d: price line before any station header", p.Path, lineNo)
			}
			rec, err := parsePriceLine(line, now)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", p.Path, lineNo, err)
			}
			rec.System, rec.Station = system, station
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", p.Path, err)
	}
	return records, nil
}

func parsePriceLine(line string, now func() time.Time) (store.PriceRecord, error) {
	m := itemLine.FindStringSubmatch(line)
	if m == nil {
		return store.PriceRecord{}, fmt.Errorf("malformed price line %q", line)
	}

	paying, _ := strconv.ParseInt(m[2], 10, 64)
	asking, _ := strconv.ParseInt(m[3], 10, 64)

	demandUnits, demandLevel, err := parseSupplyToken(m[4])
	if err != nil {
		return store.PriceRecord{}, fmt.Errorf("demand %q: %w", m[4], err)
	}
	supplyUnits, supplyLevel, err := parseSupplyToken(m[5])
	if err != nil {
		return store.PriceRecord{}, fmt.Errorf("supply %q: %w", m[5], err)
	}

	modified := now().UTC()
	if m[6] != "" {
		modified, err = time.ParseInLocation("2006-01-02 15:04:05", m[6], time.UTC)
		if err != nil {
			return store.PriceRecord{}, fmt.Errorf("timestamp %q: %w", m[6], err)
		}
	}

	return store.PriceRecord{
		Item:     strings.TrimSpace(m[1]),
		Demand:   store.PriceSide{Price: paying, Units: demandUnits, Level: demandLevel},
		Supply:   store.PriceSide{Price: asking, Units: supplyUnits, Level: supplyLevel},
		Modified: modified,
	}, nil
}

// parseSupplyToken decodes a demand/supply column: "?" unknown, "-" not
// applicable, or a unit count with an optional L/M/H level suffix.
func parseSupplyToken(tok string) (units, level int64, err error) {
	switch tok {
	case "?":
		return -1, -1, nil
	case "-":
		return 0, 0, nil
	}

	level = -1
	switch tok[len(tok)-1] {
	case 'L', 'l':
		level, tok = 1, tok[:len(tok)-1]
	case 'M', 'm':
		level, tok = 2, tok[:len(tok)-1]
	case 'H', 'h':
		level, tok = 3, tok[:len(tok)-1]
	case '?':
		tok = tok[:len(tok)-1]
	}

	units, err = strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed unit count")
	}
	return units, level, nil
}
