// Package tokens estimates prompt sizes for batch budgeting.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Counter returns the estimated number of tokens in text.
type Counter func(text string) int

// DefaultEncoding is the BPE used by the chat models batchtran targets.
const DefaultEncoding = "cl100k_base"

const defaultBytesPerToken = 4

func init() {
	// Ranks are embedded; never fetch them at run time.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Encoding returns a Counter backed by the named tiktoken encoding.
func Encoding(name string) (Counter, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", name, err)
	}
	return func(text string) int {
		if text == "" {
			return 0
		}
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// Estimator returns a Counter assuming bytesPerToken bytes per token,
// rounded up. Non-positive values fall back to 4.
func Estimator(bytesPerToken int) Counter {
	if bytesPerToken <= 0 {
		bytesPerToken = defaultBytesPerToken
	}
	return func(text string) int {
		n := len(text)
		if n == 0 {
			return 0
		}
		return (n + bytesPerToken - 1) / bytesPerToken
	}
}

var defaultCounter = sync.OnceValue(func() Counter {
	if c, err := Encoding(DefaultEncoding); err == nil {
		return c
	}
	return Estimator(defaultBytesPerToken)
})

// Default counts with cl100k_base, or with the byte estimator when the
// encoding cannot be loaded.
func Default(text string) int {
	return defaultCounter()(text)
}
