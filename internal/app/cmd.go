package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandReconcile   Command = "reconcile"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
)

// commandSummaries は usage 出力の表示順を兼ねる。
var commandSummaries = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "REST APIサーバーを起動する（既定）"},
	{CommandWorker, "お気に入り数の定期再計算ワーカーを起動する"},
	{CommandReconcile, "お気に入り数の再計算を1回だけ実行して終了する"},
	{CommandMigrate, "未適用のスキーママイグレーションを適用する"},
	{CommandHealthcheck, "ローカルの /health を叩いて終了コードで結果を返す"},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空ならCommandServeを返す。未知のサブコマンドはエラーになる。
// 2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}
	for _, c := range commandSummaries {
		if string(c.cmd) == args[0] {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q\n\n%s", args[0], Usage())
}

// Usage はサブコマンド一覧のヘルプ文字列を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: conduit [command]\n\ncommands:\n")
	for _, c := range commandSummaries {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.summary)
	}
	return b.String()
}
