// Command webp2gif конвертирует WebP изображения в GIF.
package main

import "github.com/artemshloyda/webp2gif/internal/cli"

func main() {
	cli.Execute()
}
