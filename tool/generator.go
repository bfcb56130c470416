package tool

import (
	cryptorand "crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

func GenerateRandomUUID() string {
	return uuid.New().String()
}

// GenerateRandomFingerprint returns a random 32-character hex fingerprint,
// used in plain HTTP mode where no certificate hash exists.
func GenerateRandomFingerprint() string {
	b := make([]byte, 16)
	if _, err := cryptorand.Read(b); err != nil {
		return GenerateRandomUUID()
	}
	return hex.EncodeToString(b)
}

var adjectives = []string{
	"Adorable", "Big", "Bright", "Clean", "Clever", "Cool", "Cute",
	"Determined", "Efficient", "Fast", "Fresh", "Good", "Great", "Kind",
	"Lovely", "Mystic", "Neat", "Nice", "Patient", "Powerful", "Secret",
	"Smart", "Solid", "Strong", "Tidy", "Wise",
}

var fruits = []string{
	"Apple", "Avocado", "Banana", "Blueberry", "Carrot", "Cherry",
	"Coconut", "Grape", "Lemon", "Mango", "Melon", "Orange", "Papaya",
	"Peach", "Pear", "Pineapple", "Potato", "Pumpkin", "Raspberry",
	"Strawberry", "Tomato",
}

// NameGenerator produces an official-style device alias, e.g. "Nice Orange".
func NameGenerator() string {
	return fmt.Sprintf("%s %s", adjectives[rand.Intn(len(adjectives))], fruits[rand.Intn(len(fruits))])
}
