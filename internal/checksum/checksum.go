package checksum

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateListingHash генерирует SHA256 хеш объявления
// Формула: SHA256(link|price|rooms|locality|expenses_included)
func (g *Generator) GenerateListingHash(link, price, rooms, locality string, expensesIncluded bool) string {
	content := strings.Join([]string{
		link,
		price,
		rooms,
		strings.TrimSpace(locality),
		strconv.FormatBool(expensesIncluded),
	}, "|")

	hash := sha256.Sum256([]byte(content))

	return fmt.Sprintf("%x", hash)
}
