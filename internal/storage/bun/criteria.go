package bunrepo

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

func withKey(key string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ?", bun.Ident("key"), key)
	}
}
