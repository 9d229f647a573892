package catalog

import (
	"errors"
	"testing"
)

const sampleCatalog = `
staff:
  - id: " S100 "
    name: Asha
    pin_hash: "$2a$04$abc"
depots:
  - name: Depot 12
    routes:
      - name: 500D
        stops: [Silk Board, " HSR Layout ", ""]
      - name: 201R
        stops: [Jayanagar]
hubs: [Majestic, " ", Shivajinagar]
`

func TestParseBuildsLookups(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if _, ok := c.Staff("S100"); !ok {
		t.Fatalf("expected trimmed staff id to resolve")
	}
	if got := c.Depots(); len(got) != 1 || got[0] != "Depot 12" {
		t.Fatalf("unexpected depots: %v", got)
	}
	if got := c.Routes("Depot 12"); len(got) != 2 || got[1] != "201R" {
		t.Fatalf("unexpected routes: %v", got)
	}
	stops := c.Stops("Depot 12", "500D")
	if len(stops) != 2 || stops[1] != "HSR Layout" {
		t.Fatalf("unexpected stops: %v", stops)
	}
	if c.Stops("Depot 12", "missing") != nil {
		t.Fatalf("expected nil stops for unknown route")
	}
	if got := c.Hubs(); len(got) != 2 {
		t.Fatalf("expected blank hub dropped, got %v", got)
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	doc := `
staff:
  - id: S1
  - id: S1
`
	if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog, got %v", err)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	c, err := New(nil, []Depot{{Name: "D", Routes: []Route{{Name: "R", Stops: []string{"A"}}}}}, []string{"H"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	c.Stops("D", "R")[0] = "mutated"
	c.Hubs()[0] = "mutated"
	if c.Stops("D", "R")[0] != "A" || c.Hubs()[0] != "H" {
		t.Fatalf("catalog mutated through accessor")
	}
}
