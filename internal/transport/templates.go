package transport

import (
	"github.com/sparklive/rustmailer/internal/compose"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

// TemplateStore adapts store.MetaStore's persisted model.Template records
// into compose.TemplateLookup, keeping the storage schema independent of
// the render-time compose.Template shape.
type TemplateStore struct {
	meta *store.MetaStore
}

func NewTemplateStore(meta *store.MetaStore) *TemplateStore {
	return &TemplateStore{meta: meta}
}

func (t *TemplateStore) GetTemplate(id uint64) (compose.Template, error) {
	stored, err := t.meta.GetTemplate(id)
	if err != nil {
		return compose.Template{}, err
	}
	format := compose.TemplateHTML
	if stored.Format == model.TemplateFormatMarkdown {
		format = compose.TemplateMarkdown
	}
	return compose.Template{
		ID:      stored.ID,
		Subject: stored.Subject,
		Format:  format,
		Body:    stored.Body,
	}, nil
}
