package models

import (
	"strings"
	"time"
)

// Course is an academic unit owned by a department at a given level.
type Course struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Title         string    `db:"title" json:"title"`
	Department    string    `db:"department" json:"department"`
	Level         int       `db:"level" json:"level"`
	MaterialCount int       `db:"material_count" json:"material_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CourseOption is the compact projection used by admin select inputs.
type CourseOption struct {
	ID    string `db:"id" json:"id"`
	Code  string `db:"code" json:"code"`
	Title string `db:"title" json:"title"`
}

// CourseFilter captures admin listing criteria.
type CourseFilter struct {
	Search   string
	Page     int
	PageSize int
}

// CourseQuery is the typed eligibility predicate for a student's profile:
// (department match OR cross-cutting code prefix) AND level <= MaxLevel.
// Search, when set, narrows the eligible set to codes or titles containing it.
// Repositories translate it into parameterised SQL; Matches evaluates it in memory.
type CourseQuery struct {
	Department string
	Prefixes   []string
	MaxLevel   int
	Search     string
	Limit      int
}

// Matches reports whether the course satisfies the query.
func (q CourseQuery) Matches(c Course) bool {
	if q.MaxLevel <= 0 || c.Level > q.MaxLevel {
		return false
	}
	if !q.MatchesSearch(c) {
		return false
	}
	if q.Department != "" && c.Department == q.Department {
		return true
	}
	return q.HasPrefix(c.Code)
}

// MatchesSearch reports whether code or title contains Search, ignoring case.
// An empty Search matches every course.
func (q CourseQuery) MatchesSearch(c Course) bool {
	term := strings.ToUpper(strings.TrimSpace(q.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToUpper(c.Code), term) || strings.Contains(strings.ToUpper(c.Title), term)
}

// HasPrefix reports whether code starts with one of the cross-cutting prefixes.
func (q CourseQuery) HasPrefix(code string) bool {
	code = strings.ToUpper(code)
	for _, prefix := range q.Prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(code, strings.ToUpper(prefix)) {
			return true
		}
	}
	return false
}
