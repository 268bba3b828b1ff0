package schema

import (
	"strings"
	"testing"
)

func TestReferenceTablesParentsFirst(t *testing.T) {
	tables := ReferenceTables()
	pos := make(map[string]int, len(tables))
	for i, table := range tables {
		pos[table] = i
	}
	for _, table := range tables {
		for _, child := range Children(table) {
			if pos[child] <= pos[table] {
				t.Errorf("%s ordered before its parent %s", child, table)
			}
		}
	}
}

func TestChildrenAreReferenceTables(t *testing.T) {
	known := make(map[string]bool)
	for _, table := range ReferenceTables() {
		known[table] = true
	}
	for _, table := range ReferenceTables() {
		for _, child := range Children(table) {
			if !known[child] {
				t.Errorf("%s lists unknown child %s", table, child)
			}
		}
	}
}

func TestOwnsPriceRows(t *testing.T) {
	owners := map[string]bool{
		TableSystem:   true,
		TableStation:  true,
		TableCategory: true,
		TableItem:     true,
	}
	for _, table := range ReferenceTables() {
		if got := OwnsPriceRows(table); got != owners[table] {
			t.Errorf("OwnsPriceRows(%s) = %v, want %v", table, got, owners[table])
		}
	}
}

func TestDefinitionsCoverReferenceTables(t *testing.T) {
	defined := make(map[string]Kind)
	for _, def := range Definitions() {
		defined[def.Name] = def.Kind
	}
	for _, table := range ReferenceTables() {
		if kind, ok := defined[table]; !ok || kind != KindTable {
			t.Errorf("no table definition for %s", table)
		}
	}
	for _, view := range []string{"StationBuying", "StationSelling"} {
		if kind, ok := defined[view]; !ok || kind != KindView {
			t.Errorf("no view definition for %s", view)
		}
	}
}

func TestDefinitionNamesMatchSQL(t *testing.T) {
	for _, def := range Definitions() {
		if !strings.Contains(def.SQL, def.Name) {
			t.Errorf("definition %s does not mention its own name", def.Name)
		}
	}
}
