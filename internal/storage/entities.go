package storage

import "github.com/sandeepkv93/dailyd/internal/model"

type NotificationListFilter struct {
	Kind   model.Kind
	Limit  int
	Offset int
}

func (f NotificationListFilter) matches(n model.Notification) bool {
	return f.Kind == "" || n.Payload.Kind == f.Kind
}
