// docchat answers questions using guidance documents from object storage.
package main

func main() {
	Execute()
}
