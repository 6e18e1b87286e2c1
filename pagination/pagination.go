// Package pagination 把排好序的候选切成用户可见的一页。
//
// 上游每次取一个 candidate page（最多 1000 个候选）做排序，
// 用户侧按 user page 翻页；两者通过 ranking page 换算：
//
//	ranking_page = user_page - candidate_page * candidate_page_size / user_page_size
package pagination

import (
	"fmt"

	"github.com/rushteam/bizrank/core"
)

const (
	MaxCandidatePageSize = 1000
	MaxUserPageSize      = 100
	MaxCandidates        = 1000

	DefaultCandidatePageSize = 1000
	DefaultUserPageSize      = 10
)

// Fields 是请求中的分页参数，页码均从 0 开始。
type Fields struct {
	UserPage          int `json:"user_page"`
	CandidatePage     int `json:"candidate_page"`
	CandidatePageSize int `json:"candidate_page_size"`
	UserPageSize      int `json:"user_page_size"`
}

// WithDefaults 把未设置（0）的页大小替换为默认值。
func (f Fields) WithDefaults() Fields {
	if f.CandidatePageSize == 0 {
		f.CandidatePageSize = DefaultCandidatePageSize
	}
	if f.UserPageSize == 0 {
		f.UserPageSize = DefaultUserPageSize
	}
	return f
}

func (f Fields) String() string {
	return fmt.Sprintf("user_page=%d user_page_size=%d candidate_page=%d candidate_page_size=%d",
		f.UserPage, f.UserPageSize, f.CandidatePage, f.CandidatePageSize)
}

func invalid(f Fields, format string, args ...any) error {
	return core.NewDomainError(core.ModulePagination, core.ErrorCodeInvalidInput,
		fmt.Sprintf(format, args...)+", "+f.String())
}

// Paginate 返回 items 中属于当前用户页的切片（新切片，不与 items 共享底层数组）。
// 空输入直接返回空结果，不做校验。
func Paginate[T any](f Fields, items []T) ([]T, error) {
	if len(items) == 0 {
		return []T{}, nil
	}
	if f.UserPageSize <= 0 || f.UserPageSize > MaxUserPageSize {
		return nil, invalid(f, "user page size %d must be in (0, %d]", f.UserPageSize, MaxUserPageSize)
	}

	rankingPage := float64(f.UserPage) -
		float64(f.CandidatePage)*float64(f.CandidatePageSize)/float64(f.UserPageSize)
	start := int(rankingPage * float64(f.UserPageSize))
	end := min(int((rankingPage+1)*float64(f.UserPageSize)), len(items))

	switch {
	case rankingPage < 0:
		return nil, invalid(f, "ranking page %v is less than 0, is the user page correct?", rankingPage)
	case f.CandidatePage < 0 || f.UserPage < 0:
		return nil, invalid(f, "user page %d or candidate page %d is less than 0", f.UserPage, f.CandidatePage)
	case f.CandidatePageSize < 0 || f.CandidatePageSize > MaxCandidatePageSize:
		return nil, invalid(f, "candidate page size %d must be in [0, %d]", f.CandidatePageSize, MaxCandidatePageSize)
	case len(items) > MaxCandidates:
		return nil, invalid(f, "number of entities %d is greater than %d", len(items), MaxCandidates)
	case f.UserPageSize > f.CandidatePageSize:
		return nil, invalid(f, "user page size %d is greater than candidate page size %d", f.UserPageSize, f.CandidatePageSize)
	case end <= start:
		return nil, invalid(f, "computed end index %d is not greater than start index %d, number of entities %d",
			end, start, len(items))
	}

	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, nil
}
