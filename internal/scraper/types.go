package scraper

import "fmt"

// Listing: одно объявление со страницы выдачи.
type Listing struct {
	Price            string
	ExpensesIncluded bool
	Locality         string
	Rooms            string
	Link             string // абсолютный URL детальной страницы
}

type Selectors struct {
	Container string `yaml:"container"`
	Rooms     string `yaml:"rooms"`
	Price     string `yaml:"price"`
	Link      string `yaml:"link"`
	Comment   string `yaml:"comment"`
	Paragraph string `yaml:"paragraph"`
}

// DefaultSelectors соответствуют разметке idealista.com.
func DefaultSelectors() *Selectors {
	return &Selectors{
		Container: "div.item-info-container",
		Rooms:     "div.item-detail-char span.item-detail",
		Price:     "span.item-price",
		Link:      "a.item-link",
		Comment:   "div.comment",
		Paragraph: "p",
	}
}

// SkipReason объясняет, почему контейнер не превратился в Listing.
type SkipReason struct {
	Index int
	Field string
	Err   error
}

func (r *SkipReason) Error() string {
	return fmt.Sprintf("container %d: %s: %v", r.Index, r.Field, r.Err)
}

func (r *SkipReason) Unwrap() error {
	return r.Err
}

// ItemResult: результат обработки одного контейнера: либо Listing, либо Skip.
type ItemResult struct {
	Listing *Listing
	Skip    *SkipReason
}

// PageResult: успешные объявления в порядке документа плюс пропуски.
type PageResult struct {
	Listings []Listing
	Skipped  []SkipReason
}
