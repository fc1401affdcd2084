// tracksim 是曲目相似推荐服务的命令行入口。
package main

func main() {
	Execute()
}
