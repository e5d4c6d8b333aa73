package models

import (
	"github.com/go-playground/validator/v10"
)

type Account struct {
	StudentID string `db:"student_id" json:"student_id" validate:"required,numeric"`
	Password  string `db:"password" json:"-" validate:"required"`
	Name      string `db:"name" json:"name"`
	College   string `db:"college" json:"college"`
	Major     string `db:"major" json:"major"`
	JgID      string `db:"jg_id" json:"jg_id"`
	ZyhID     string `db:"zyh_id" json:"zyh_id"`
	NjdmID    string `db:"njdm_id" json:"njdm_id"`
	SortIndex int64  `db:"sort_index" json:"sort_index"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

func (a *Account) Validate() error {
	validate := validator.New()
	return validate.Struct(a)
}
