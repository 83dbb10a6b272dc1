package model

import "time"

// 営業日・注文番号・売上集計はすべて韓国時間
var KST = time.FixedZone("KST", 9*60*60)

// DateKeyKST は注文番号の日付部分（YYYYMMDD）
func DateKeyKST(t time.Time) string {
	return t.In(KST).Format("20060102")
}

// DayRangeKST はtを含むKSTの1日 [from, to)
func DayRangeKST(t time.Time) (time.Time, time.Time) {
	k := t.In(KST)
	from := time.Date(k.Year(), k.Month(), k.Day(), 0, 0, 0, 0, KST)
	return from, from.AddDate(0, 0, 1)
}
