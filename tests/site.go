package tests

import (
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
)

var Faker = gofakeit.New(rand.Uint64())

// Site creates a temporary page directory containing the specified files and returns its path.
// Keys are slash separated paths relative to the directory.
func Site(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// WriteFile (over)writes a single file inside dir, creating parent directories as needed.
func WriteFile(t testing.TB, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("cannot create directory for %q: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("cannot write %q: %v", name, err)
	}
	return path
}

// Heading returns a random markdown document starting with a level one heading.
func Heading() (title string, source string) {
	title = Faker.Sentence(3)
	return title, "# " + title + "\n\n" + Faker.Paragraph(2, 3, 8, " ") + "\n"
}

func Check(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
