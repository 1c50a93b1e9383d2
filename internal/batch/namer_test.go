package batch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamerBasic(t *testing.T) {
	n := NewNamer()
	assert.Equal(t, "John_Doe.pdf", n.Filename("John", "Doe"))
}

func TestNamerSanitizes(t *testing.T) {
	n := NewNamer()
	assert.Equal(t, "Mary_Jane_van_der_Berg.pdf", n.Filename("Mary Jane", "van der Berg"))
	assert.Equal(t, "a_b_c_d.pdf", n.Filename("a/b", "c\\d"))
	assert.Equal(t, "John_Doe_1.pdf", n.Filename("  John  ", "Doe"))
}

func TestNamerCollisions(t *testing.T) {
	n := NewNamer()
	assert.Equal(t, "John_Doe.pdf", n.Filename("John", "Doe"))
	assert.Equal(t, "John_Doe_1.pdf", n.Filename("John", "Doe"))
	assert.Equal(t, "John_Doe_2.pdf", n.Filename("John", "Doe"))
	assert.Equal(t, "Jane_Doe.pdf", n.Filename("Jane", "Doe"))
}

func TestNamerConcurrentUniqueness(t *testing.T) {
	n := NewNamer()
	const goroutines = 32

	names := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names <- n.Filename("John", "Doe")
		}()
	}
	wg.Wait()
	close(names)

	seen := map[string]bool{}
	for name := range names {
		assert.False(t, seen[name], "duplicate filename %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, goroutines)
}
