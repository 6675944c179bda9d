package model

import "time"

// MenuItem はメニューに掲載されるピザを表す。
type MenuItem struct {
	ID          int64
	Title       string
	Description string
	Image       string
	Price       float64
}

// Order はダイナーが行った注文を表す。
type Order struct {
	ID          int64
	DinerID     int64
	FranchiseID int64
	StoreID     int64
	Date        time.Time
	Items       []OrderItem
}

// OrderItem は注文明細を表す。Priceは注文時点の価格を保持する。
type OrderItem struct {
	ID          int64
	OrderID     int64
	MenuID      int64
	Description string
	Price       float64
}

// Total は注文明細の合計金額を返す。
func (o *Order) Total() float64 {
	var total float64
	for _, it := range o.Items {
		total += it.Price
	}
	return total
}

// FactoryReceipt は工場サービスからの受領結果を表す。
type FactoryReceipt struct {
	JWT       string
	ReportURL string
}
