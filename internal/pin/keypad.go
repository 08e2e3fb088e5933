// Package pin provides virtual PIN keypad rules and access window evaluation.
package pin

import (
	"fmt"
	"strings"
)

// Length is the exact number of keys in a virtual PIN.
const Length = 6

// Keys is the keypad's key set.
const Keys = "0123456789ABCD"

// ValidKey reports whether key is a single keypad key.
func ValidKey(key string) bool {
	return len(key) == 1 && strings.Contains(Keys, key)
}

// Append adds key to pin. It returns the pin unchanged and false when the key
// is not on the keypad or the pin is already full.
func Append(pin, key string) (string, bool) {
	if !ValidKey(key) || len(pin) >= Length {
		return pin, false
	}
	return pin + key, true
}

// Delete removes the last key of pin. Deleting from an empty pin is a no-op.
func Delete(pin string) string {
	if pin == "" {
		return pin
	}
	return pin[:len(pin)-1]
}

// Complete reports whether pin is a full, valid PIN.
func Complete(pin string) bool {
	return Validate(pin) == nil
}

// Validate checks a PIN and returns an error message if it is not usable.
func Validate(pin string) error {
	if len(pin) != Length {
		return fmt.Errorf("PIN must be exactly %d keys", Length)
	}

	for _, c := range pin {
		if !strings.ContainsRune(Keys, c) {
			return fmt.Errorf("PIN may only contain 0-9 and A-D")
		}
	}

	return nil
}
