package notification

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notifications/core"
)

// Builder validates payloads and renders them into persisted data & mail.
type Builder struct {
	validate   *validator.Validate
	translator ut.Translator
	env        buildEnv
}

func NewBuilder(validate *validator.Validate, translator ut.Translator, conf *core.Config) *Builder {
	vala.BeginValidation().Validate(
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Builder{
		validate:   validate,
		translator: translator,
		env: buildEnv{
			AppName:         conf.AppName,
			FrontendBaseURL: conf.FrontendBaseURL,
		},
	}
}

// Build returns a *core.ValidationError when a required field of p is missing or malformed.
func (b *Builder) Build(p Payload) (Data, Mail, error) {
	if p == nil {
		return nil, Mail{}, core.NewValidationError(errors.New("payload is required"))
	}
	p = CleanPayload(p)
	if err := b.validate.Struct(p); err != nil {
		return nil, Mail{}, core.NewValidationErrorFrom(err, b.translator)
	}
	data, m := p.build(b.env)
	return data, *m, nil
}
