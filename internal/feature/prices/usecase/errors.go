package usecase

import (
	"errors"
	"fmt"
)

// ErrBatchRunning is returned when a batch run is requested while another is in progress.
var ErrBatchRunning = errors.New("ingestion batch already running")

// DataSourceError は外部APIからの取得失敗（通信エラー、タイムアウト、不正なレスポンス）を表します。
type DataSourceError struct {
	Symbol string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source error for %s: %v", e.Symbol, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// UnknownSymbolError はカタログに存在しない銘柄が指定されたことを表します。
type UnknownSymbolError struct {
	Symbol string
	Err    error
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q", e.Symbol)
}

func (e *UnknownSymbolError) Unwrap() error { return e.Err }

// PersistenceError は価格バーまたは鮮度ポインタの保存失敗を表します。
// このエラーが返った場合、どちらも更新されていません。
type PersistenceError struct {
	Symbol string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Symbol, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
