package catalog

import (
	"fmt"
	"strings"
)

// Category is the learner tier a simulated identity belongs to.
type Category int

const (
	// CategoryAll marks an endpoint that every tier exercises.
	CategoryAll Category = iota
	CategoryBeginner
	CategoryIntermediate
	CategoryAdvanced
)

// Tiers lists the assignable categories in ordinal order.
var Tiers = []Category{CategoryBeginner, CategoryIntermediate, CategoryAdvanced}

func (c Category) String() string {
	switch c {
	case CategoryAll:
		return "all"
	case CategoryBeginner:
		return "beginner"
	case CategoryIntermediate:
		return "intermediate"
	case CategoryAdvanced:
		return "advanced"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return CategoryAll, nil
	case "beginner":
		return CategoryBeginner, nil
	case "intermediate":
		return CategoryIntermediate, nil
	case "advanced":
		return CategoryAdvanced, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Method is the HTTP verb of an endpoint.
type Method int

const (
	MethodGet Method = iota
	MethodPost
)

func (m Method) String() string {
	if m == MethodPost {
		return "POST"
	}
	return "GET"
}

// Endpoint describes one operation on the target service. Entries are shared
// by every session and must not be modified after construction.
type Endpoint struct {
	Name     string
	Method   Method
	Path     string
	Category Category
	// Body is sent as JSON for POST endpoints.
	Body any
}

// AppliesTo reports whether an identity of category c exercises the endpoint.
func (e Endpoint) AppliesTo(c Category) bool {
	return e.Category == CategoryAll || e.Category == c
}

// Catalog is an ordered, read-only endpoint table.
type Catalog []Endpoint

// Default returns the content operations of the learning platform. Order is
// significant: coverage selection takes a leading prefix.
func Default() Catalog {
	return Catalog{
		{Name: "Health Check", Method: MethodGet, Path: "/api/health", Category: CategoryAll},
		{Name: "Lesson List", Method: MethodGet, Path: "/api/lessons", Category: CategoryAll},
		{Name: "User Progress", Method: MethodGet, Path: "/api/progress", Category: CategoryAll},
		{Name: "Story List", Method: MethodGet, Path: "/api/stories", Category: CategoryAll},
		{Name: "Scenario List", Method: MethodGet, Path: "/api/scenarios", Category: CategoryAll},
		{Name: "Quiz List", Method: MethodGet, Path: "/api/quizzes", Category: CategoryAll},

		{Name: "Beginner Lesson Detail", Method: MethodGet, Path: "/api/lessons/1", Category: CategoryBeginner},
		{Name: "Beginner Vocabulary", Method: MethodGet, Path: "/api/vocabulary?level=beginner", Category: CategoryBeginner},
		{Name: "Beginner Quiz Submit", Method: MethodPost, Path: "/api/quizzes/1/submit", Category: CategoryBeginner,
			Body: map[string]any{"answers": []int{0, 1, 2}}},

		{Name: "Intermediate Lesson Detail", Method: MethodGet, Path: "/api/lessons/12", Category: CategoryIntermediate},
		{Name: "Intermediate Story Detail", Method: MethodGet, Path: "/api/stories/4", Category: CategoryIntermediate},
		{Name: "Intermediate Quiz Submit", Method: MethodPost, Path: "/api/quizzes/7/submit", Category: CategoryIntermediate,
			Body: map[string]any{"answers": []int{2, 0, 1, 3}}},

		{Name: "Advanced Lesson Detail", Method: MethodGet, Path: "/api/lessons/24", Category: CategoryAdvanced},
		{Name: "Advanced Scenario Detail", Method: MethodGet, Path: "/api/scenarios/9", Category: CategoryAdvanced},
		{Name: "Advanced Conversation Practice", Method: MethodPost, Path: "/api/scenarios/9/practice", Category: CategoryAdvanced,
			Body: map[string]any{"message": "Could you recommend a restaurant nearby?"}},
	}
}

// For returns the endpoints applicable to category c, in catalog order.
func (c Catalog) For(cat Category) []Endpoint {
	var out []Endpoint
	for _, e := range c {
		if e.AppliesTo(cat) {
			out = append(out, e)
		}
	}
	return out
}
