/*
 *   Copyright (c) 2021 Anton Brekhov
 *   All rights reserved.
 */
package main

import "github.com/abrekhov/rtcbridge/cmd"

func main() {
	cmd.Execute()
}
