package detect

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// FingerprintPage computes a 64-bit SimHash over the page's tag structure.
// Text content and attributes are ignored, so the hash is stable across
// runs with different applicant data but shifts when the site's markup
// changes. Operators compare fingerprints between runs to catch redesigns
// that would silently defeat the phrase matching.
func FingerprintPage(src string) uint64 {
	tags := tagSequence(src)
	if len(tags) == 0 {
		return 0
	}

	// Shingle the tag sequence so local structure matters, not just the
	// tag histogram.
	const shingleSize = 3
	tokens := tags
	if len(tags) >= shingleSize {
		tokens = make([]string, 0, len(tags)-shingleSize+1)
		for i := 0; i <= len(tags)-shingleSize; i++ {
			tokens = append(tokens, strings.Join(tags[i:i+shingleSize], "_"))
		}
	}

	var vector [64]int
	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// StructureChanged reports whether two page fingerprints differ by more
// than the given Hamming distance.
func StructureChanged(a, b uint64, threshold int) bool {
	return bits.OnesCount64(a^b) > threshold
}

// tagSequence collects open tag names in document order.
func tagSequence(src string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(src))
	var tags []string
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			tags = append(tags, string(tn))
		}
	}
}
