// Package common: pluralize.go содержит функции форматирования чисел
// и английского склонения для текстов бота.
package common

import "fmt"

// FormatSignedPoints создаёт строку вида "+100 MP" или "-50 MP".
// Знак «+» или «-» добавляется автоматически.
//
// Примеры:
//
//	FormatSignedPoints(100)  → "+100 MP"
//	FormatSignedPoints(-50)  → "-50 MP"
func FormatSignedPoints(amount int64) string {
	if amount >= 0 {
		return "+" + FormatPoints(amount)
	}
	return "-" + FormatPoints(-amount)
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	// Рекурсивно добавляем разделители
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}

// Pluralize возвращает форму слова для числа n: "1 transaction", "3 transactions".
func Pluralize(n int, singular, plural string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
