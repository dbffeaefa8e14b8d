package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数なしの場合の既定。
	CommandServe Command = "serve"
	// CommandMigrate はマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中サーバーの/healthを確認して終了する。
	// distrolessイメージのHEALTHCHECKから呼ばれる。
	CommandHealthcheck Command = "healthcheck"
)

var commands = []Command{CommandServe, CommandMigrate, CommandHealthcheck}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを決める。
// 引数がなければCommandServeを返す。未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown command %q (available: %s)", args[0], commandList())
}

func commandList() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
