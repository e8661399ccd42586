package quiz

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", sampleJSON)
	writeFile(t, dir, "b.yaml", strings.Replace(sampleYAML, "id: plant-doctor", "id: cactus", 1))
	writeFile(t, dir, "README.md", "ignored")

	c, err := LoadCatalog(dir, "plant-doctor")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
	if !reflect.DeepEqual(c.IDs(), []string{"cactus", "plant-doctor"}) {
		t.Fatalf("ids = %v", c.IDs())
	}
	if c.Default().ID != "plant-doctor" {
		t.Fatalf("default = %s", c.Default().ID)
	}
	if _, ok := c.Get("cactus"); !ok {
		t.Fatal("cactus missing")
	}
	if list := c.List(); list[0].ID != "cactus" {
		t.Fatalf("list order = %s", list[0].ID)
	}
}

func TestLoadCatalogDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", sampleJSON)
	writeFile(t, dir, "b.yaml", sampleYAML)

	_, err := LoadCatalog(dir, "")
	if !errors.Is(err, ErrInvalidTree) {
		t.Fatalf("err = %v, want ErrInvalidTree", err)
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestLoadCatalogJoinsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.json", `{"id":"one"}`)
	writeFile(t, dir, "two.json", `{"id":"two"}`)

	_, err := LoadCatalog(dir, "")
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "one.json") || !strings.Contains(msg, "two.json") {
		t.Fatalf("message should name both files: %q", msg)
	}
}

func TestLoadCatalogEmptyDir(t *testing.T) {
	if _, err := LoadCatalog(t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestNewCatalogDefault(t *testing.T) {
	a := sampleTree()
	b := sampleTree()
	b.ID = "aloe"

	c, err := NewCatalog("", a, b)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.Default().ID != "aloe" {
		t.Fatalf("default = %s, want first id in sort order", c.Default().ID)
	}
	if _, err := NewCatalog("missing", a); err == nil {
		t.Fatal("expected unknown default to fail")
	}
}
