package models

const (
	CheckinLoginPassword = 0
	CheckinLoginQRCode   = 1
)

type CheckinAccount struct {
	StudentID         string `db:"student_id" json:"student_id" validate:"required"`
	Password          string `db:"password" json:"-"`
	Name              string `db:"name" json:"name"`
	Remark            string `db:"remark" json:"remark"`
	LoginType         int64  `db:"login_type" json:"login_type"`
	OpenID            string `db:"open_id" json:"open_id"`
	Location          string `db:"location" json:"location"`
	LastCheckinTime   string `db:"last_checkin_time" json:"last_checkin_time"`
	LastCheckinStatus string `db:"last_checkin_status" json:"last_checkin_status"`
	SortIndex         int64  `db:"sort_index" json:"sort_index"`
}
