package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// offset は1始まりのページ番号から取得開始位置を計算する。
// 1未満のページ番号は1ページ目として扱う。
func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// namePattern は名前フィルタをLIKEパターンに変換する。
// "*"はワイルドカード、空文字列は全件一致として扱う。
// LIKEの特殊文字はエスケープする。
func namePattern(filter string) string {
	if filter == "" {
		return "%"
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`)
	return r.Replace(filter)
}

// nullObjectID はロールの対象IDをNULL許容値に変換する。0はNULLとして保存する。
func nullObjectID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
