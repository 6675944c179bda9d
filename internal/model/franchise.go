package model

// Franchise はフランチャイズを表す。
// Adminsはfranchiseeロールでこのフランチャイズに紐付くユーザー。
type Franchise struct {
	ID     int64
	Name   string
	Admins []FranchiseAdmin
	Stores []Store
}

// FranchiseAdmin はフランチャイズ管理者の公開情報。
type FranchiseAdmin struct {
	ID    int64
	Name  string
	Email string
}

// Store はフランチャイズ配下の店舗を表す。
// TotalRevenueは注文明細価格の合計で、管理者向け表示でのみ設定される。
type Store struct {
	ID           int64
	FranchiseID  int64
	Name         string
	TotalRevenue float64
}

// HasAdmin は指定ユーザーがフランチャイズ管理者に含まれるかどうかを返す。
func (f *Franchise) HasAdmin(userID int64) bool {
	if f == nil {
		return false
	}
	for _, a := range f.Admins {
		if a.ID == userID {
			return true
		}
	}
	return false
}
