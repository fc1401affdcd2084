package genre

// appleGenres 是 iTunes primaryGenreId 到流派名的映射（音乐类目）。
var appleGenres = map[int]string{
	2:  "Blues",
	3:  "Comedy",
	4:  "Children's Music",
	5:  "Classical",
	6:  "Country",
	7:  "Electronic",
	8:  "Holiday",
	9:  "Opera",
	10: "Singer/Songwriter",
	11: "Jazz",
	12: "Latino",
	13: "New Age",
	14: "Pop",
	15: "R&B/Soul",
	16: "Soundtrack",
	17: "Dance",
	18: "Hip-Hop/Rap",
	19: "World",
	20: "Alternative",
	21: "Rock",
	22: "Christian & Gospel",
	24: "Reggae",
	25: "Easy Listening",
	27: "J-Pop",
	28: "Enka",
	29: "Anime",
	30: "Kayokyoku",
	50: "Fitness & Workout",
	51: "K-Pop",
	52: "Karaoke",
	53: "Instrumental",
}

// AppleGenreName 返回 genreId 对应的流派名，未知 id 返回空串。
func AppleGenreName(id int) string {
	return appleGenres[id]
}
