package fakeapi

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/tulipapi/internal/tulip"
)

// Seed describes initial emulator state:
//
//	tables:
//	  - id: widgets
//	    label: Widgets
//	    columns:
//	      - {name: id, type: string}
//	      - {name: count, type: integer}
//	    records:
//	      - {id: w1, count: 3}
//	links:
//	  - {id: parts, left_table: widgets, right_table: parts}
type Seed struct {
	Tables []SeedTable `yaml:"tables"`
	Links  []Link      `yaml:"links"`
}

// SeedTable is one table of a Seed.
type SeedTable struct {
	ID          string           `yaml:"id"`
	Label       string           `yaml:"label"`
	Description string           `yaml:"description"`
	Columns     []SeedColumn     `yaml:"columns"`
	Records     []map[string]any `yaml:"records"`
}

// SeedColumn is one column of a SeedTable.
type SeedColumn struct {
	Name   string           `yaml:"name"`
	Type   tulip.ColumnType `yaml:"type"`
	Hidden bool             `yaml:"hidden"`
	Label  string           `yaml:"label"`
}

// ReadSeed parses a seed document.
func ReadSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// LoadSeedFile reads a seed file and applies it to store.
func LoadSeedFile(store *Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	seed, err := ReadSeed(f)
	if err != nil {
		return err
	}
	return seed.Apply(store)
}

// Apply creates the seed's tables and links in store.
func (s *Seed) Apply(store *Store) error {
	for _, st := range s.Tables {
		d := tulip.TableDetails{ID: st.ID, Label: st.Label, Description: st.Description}
		for _, c := range st.Columns {
			d.Columns = append(d.Columns, tulip.Column{
				Name:     c.Name,
				DataType: tulip.DataType{Type: c.Type},
				Hidden:   c.Hidden,
				Label:    c.Label,
			})
		}

		records := make([]tulip.Record, len(st.Records))
		for i, raw := range st.Records {
			records[i] = tulip.RecordOf(raw)
		}
		if err := store.CreateTable(d, records...); err != nil {
			return err
		}
	}

	for _, l := range s.Links {
		store.CreateLink(l)
	}
	return nil
}
