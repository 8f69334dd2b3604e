package market

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// IronOre describes the manually maintained benchmark price.
var IronOre = Symbol{Symbol: "IRONORE", Name: "Iron Ore"}

var errNoPriceData = errors.New("no price data found")

// ParseIronOre reads "date,price" lines, newest first. The change is taken
// against the second line when there is one.
func ParseIronOre(r io.Reader) (Quote, error) {
	type point struct {
		date  string
		price decimal.Decimal
	}

	var points []point
	sc := bufio.NewScanner(r)
	for sc.Scan() && len(points) < 2 {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		date, raw, ok := strings.Cut(line, ",")
		if !ok {
			return Quote{}, fmt.Errorf("malformed line %q", line)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return Quote{}, fmt.Errorf("parsing price on %q: %w", line, err)
		}
		points = append(points, point{date: strings.TrimSpace(date), price: price})
	}
	if err := sc.Err(); err != nil {
		return Quote{}, err
	}
	if len(points) == 0 {
		return Quote{}, errNoPriceData
	}

	q := Quote{
		Symbol:        IronOre.Symbol,
		Name:          IronOre.Name,
		Price:         points[0].price.StringFixed(2),
		ChangePercent: ZeroChange,
		Source:        fmt.Sprintf("Market Index (Updated %s)", points[0].date),
	}
	if len(points) == 2 {
		change, err := ChangePercent(points[0].price, points[1].price)
		if err != nil {
			return Quote{}, err
		}
		q.ChangePercent = change
	}
	return q, nil
}

// LoadIronOre reads the price file at path. Any failure yields the error
// sentinel with a file-error source.
func LoadIronOre(path string) Quote {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("iron ore price file unavailable", "path", path, "error", err)
		return errorQuote(IronOre, SourceFileError)
	}
	defer f.Close()

	q, err := ParseIronOre(f)
	if err != nil {
		slog.Warn("iron ore price file invalid", "path", path, "error", err)
		return errorQuote(IronOre, SourceFileError)
	}
	return q
}
