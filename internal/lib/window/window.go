// Package window содержит чистую функцию подсчёта событий внутри
// скользящего временного окна. Используется движком квот для анонимных
// публикаций.
package window

import "time"

// CountRecent возвращает число событий, попадающих в окно длиной size,
// отсчитанное назад от now: событие считается недавним, если
// now.Sub(ts) < size.
//
// Событие с меткой позже now (рассинхронизация часов клиента) тоже
// считается недавним: разница отрицательна и условие выполняется.
// Это принимаемый вход, а не ошибка.
func CountRecent(timestamps []time.Time, size time.Duration, now time.Time) int {
	var count int
	for _, ts := range timestamps {
		if now.Sub(ts) < size {
			count++
		}
	}
	return count
}
