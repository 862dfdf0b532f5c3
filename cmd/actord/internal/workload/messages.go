package workload

import "time"

// 记账
type AddReq struct {
	Producer int
	Amount   int64
	SentAt   time.Time
}

type SumReq struct{}

type SumResp struct {
	Count    int64
	Total    int64
	AvgDelay time.Duration
}
