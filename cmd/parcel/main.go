// Command parcel runs the order-intake agent: an HTTP chat API, a Gmail inbox
// poller and a terminal chat over the same tool-calling loop.
package main

func main() {
	Execute()
}
