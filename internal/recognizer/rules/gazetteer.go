package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Gazetteer maps a category label to the literal terms tagged with it.
//
// On disk it is a YAML document keyed by label:
//
//	ORG:
//	  - Swiggy
//	  - Big Basket
//	GPE:
//	  - Jakarta
type Gazetteer map[string][]string

// ErrGazetteerNotFound indicates the configured gazetteer file does not exist.
var ErrGazetteerNotFound = errors.New("gazetteer file not found")

// DefaultGazetteer returns a copy of the built-in merchants, banks and places.
func DefaultGazetteer() Gazetteer {
	g := make(Gazetteer, len(defaultTerms))
	for label, terms := range defaultTerms {
		g[label] = append([]string(nil), terms...)
	}
	return g
}

var defaultTerms = Gazetteer{
	labelOrg: {
		"Swiggy", "Zomato", "Amazon", "Flipkart", "Myntra", "Paytm", "PhonePe",
		"Google Pay", "Netflix", "Spotify", "Uber", "Ola", "Airtel", "Jio",
		"Vodafone", "Starbucks", "Walmart", "Apple", "Microsoft", "Tokopedia",
		"Gojek", "Grab", "HDFC Bank", "ICICI Bank", "Axis Bank", "Kotak",
		"SBI", "BCA", "Mandiri",
	},
	labelGPE: {
		"India", "Indonesia", "Mumbai", "Delhi", "New Delhi", "Bangalore",
		"Bengaluru", "Chennai", "Kolkata", "Hyderabad", "Pune", "Jakarta",
		"Bali", "Surabaya", "Singapore", "Dubai", "London", "New York",
	},
}

// LoadGazetteer reads a YAML gazetteer file. Labels are upper-cased and
// blank terms dropped.
func LoadGazetteer(path string) (Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrGazetteerNotFound, path)
		}
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}

	var raw Gazetteer
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse gazetteer %s: %w", path, err)
	}

	g := make(Gazetteer, len(raw))
	g.Merge(raw)
	return g, nil
}

// Merge adds the terms of other to g, normalising labels.
func (g Gazetteer) Merge(other Gazetteer) {
	for label, terms := range other {
		label = strings.ToUpper(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		for _, term := range terms {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			g[label] = append(g[label], term)
		}
	}
}
