package scraper

// Page scripts. Each is an expression evaluating to a JSON-serializable value
// whose keys match the json tags of the record it decodes into.

const houseBillListJS = `(() => {
  const bills = [];
  const tables = Array.from(document.querySelectorAll('table'));
  const billTable = tables.find(t => t.innerText.includes('HB') || t.innerText.includes('SB'));
  if (!billTable) return bills;
  let current = null;
  for (const row of billTable.querySelectorAll('tr')) {
    const cells = Array.from(row.querySelectorAll('td'));
    if (cells.length === 0 || row.querySelector('th')) continue;
    if (cells.length >= 4) {
      const link = cells[0].querySelector('a');
      if (!link) continue;
      const sponsorLink = cells[1].querySelector('a');
      current = {
        bill_number: link.textContent.trim(),
        bill_url: link.href,
        sponsor: (sponsorLink || cells[1]).textContent.trim(),
        sponsor_url: sponsorLink ? sponsorLink.href : '',
        description: ''
      };
      bills.push(current);
    } else if (cells.length === 2 && current) {
      current.description = cells[1].textContent.trim();
    }
  }
  return bills;
})()`

const houseBillDetailJS = `(() => {
  const d = {
    bill_number: '', title: '', sponsor: '', sponsor_url: '', lr_number: '',
    last_action: '', proposed_effective_date: '', bill_string: '',
    calendar_status: '', hearing_status: '', documents: []
  };
  const h1 = document.querySelector('h1');
  if (h1) d.bill_number = h1.textContent.trim();
  const mainDiv = document.querySelector('main > div');
  if (mainDiv && d.bill_number) {
    const lines = mainDiv.textContent.split('\n').map(l => l.trim()).filter(l => l.length > 0);
    let found = false;
    for (const line of lines) {
      if (line.indexOf(d.bill_number) >= 0) { found = true; continue; }
      if (found) { d.title = line; break; }
    }
  }
  const all = Array.from(document.querySelectorAll('main *'));
  const labeled = (label) => {
    for (let i = 0; i < all.length - 1; i++) {
      if (all[i].textContent.trim() === label) return all[i + 1].textContent.trim();
    }
    return '';
  };
  const sponsor = document.querySelector('a[href*="MemberDetails"]');
  if (sponsor) { d.sponsor = sponsor.textContent.trim(); d.sponsor_url = sponsor.href; }
  d.proposed_effective_date = labeled('Proposed Effective Date:');
  d.lr_number = labeled('LR Number:');
  d.last_action = labeled('Last Action:');
  d.bill_string = labeled('Bill String:');
  d.hearing_status = labeled('Next House Hearing:');
  d.calendar_status = labeled('Calendar:');
  const docs = document.getElementById('BillDocuments');
  if (docs) {
    for (const a of docs.querySelectorAll('a[href*=".pdf"]')) {
      d.documents.push({ title: a.textContent.trim(), url: a.href });
    }
  }
  return d;
})()`

const houseCosponsorsJS = `(() => {
  const names = [];
  for (const row of document.querySelectorAll('tr')) {
    const cells = row.querySelectorAll('td');
    if (cells.length >= 4) {
      const name = cells[0].textContent.trim();
      if (name && name !== 'Member') names.push(name);
    }
  }
  return names;
})()`

const houseActionsJS = `(() => {
  const actions = [];
  for (const row of document.querySelectorAll('tr')) {
    const cells = row.querySelectorAll('td');
    if (cells.length >= 3) {
      const date = cells[0].textContent.trim();
      const description = cells[2].textContent.trim();
      if (description && date !== 'Date') actions.push({ date: date, description: description });
    }
  }
  return actions;
})()`

const houseHearingsJS = `(() => {
  const hearings = [];
  const table = document.querySelector('table');
  if (!table) return hearings;
  let h = null;
  const flush = () => { if (h && h.committee && h.date) hearings.push(h); };
  for (const row of table.querySelectorAll('tr')) {
    const cells = Array.from(row.querySelectorAll('td, th'));
    if (cells.length === 1 && cells[0].tagName === 'TH') {
      flush();
      const link = cells[0].querySelector('a');
      h = { committee: (link || cells[0]).textContent.trim(), date: '', time: '', location: '' };
    } else if (cells.length === 2 && h) {
      const label = cells[0].textContent.trim();
      const value = cells[1].textContent.trim();
      if (label === 'Date:') h.date = value;
      else if (label === 'Time:') h.time = value;
      else if (label === 'Location:') h.location = value;
    }
  }
  flush();
  return hearings;
})()`

const houseRosterJS = `(() => {
  const main = document.querySelector('main');
  if (!main) return [];
  const byDistrict = new Map();
  for (const link of main.querySelectorAll('a[href*="MemberDetails"]')) {
    const m = link.href.match(/district=(\d+)/i);
    if (!m) continue;
    if (!byDistrict.has(m[1])) byDistrict.set(m[1], { profile_url: link.href, district: m[1], parts: [] });
    byDistrict.get(m[1]).parts.push(link.textContent.trim());
  }
  const parties = [];
  for (const el of main.querySelectorAll('*')) {
    const t = el.textContent.trim();
    if (t === 'R' || t === 'D' || t === 'Republican' || t === 'Democrat') parties.push(t);
  }
  const out = [];
  let i = 0;
  for (const v of byDistrict.values()) {
    out.push({ name: v.parts.join(' '), district: v.district, party_abbrev: parties[i] || '', profile_url: v.profile_url });
    i++;
  }
  return out;
})()`

const memberProfileJS = `(() => {
  const d = {
    name: '', legislator_type: '', district: '', party_affiliation: '',
    year_elected: '', years_served: '', picture_url: '', is_active: true,
    profile_url: window.location.href
  };
  const h1 = document.querySelector('h1');
  if (h1) d.name = h1.textContent.trim();
  const img = document.querySelector('img[src*="MemberPhoto"]');
  if (img) d.picture_url = img.src;
  const text = document.body.textContent;
  if (text.indexOf('This record belongs to a former Representative') !== -1 ||
      text.indexOf('This record belongs to a former Senator') !== -1) {
    d.is_active = false;
  }
  const main = document.querySelector('main');
  if (main) {
    const walker = document.createTreeWalker(main, NodeFilter.SHOW_TEXT, null);
    const nodes = [];
    let n;
    while ((n = walker.nextNode())) {
      const t = n.textContent.trim();
      if (t) nodes.push(t);
    }
    for (let i = 0; i < nodes.length; i++) {
      const t = nodes[i];
      if (t.indexOf('District') === 0) d.district = t.replace('District', '').trim();
      if (['Republican', 'Democrat', 'Democratic', 'Independent'].includes(t)) d.party_affiliation = t;
      if (t === 'Elected:' && i + 1 < nodes.length) d.year_elected = nodes[i + 1];
      if (t === 'Years Served:' && i + 1 < nodes.length) d.years_served = nodes[i + 1];
    }
  }
  return d;
})()`

const senateBillListJS = `(() => {
  const bills = [];
  for (const link of document.querySelectorAll('a[href*="Bill.aspx"]')) {
    const m = link.href.match(/BillID=(\d+)/i);
    if (!m) continue;
    const row = link.closest('tr');
    const table = link.closest('table');
    const text = (table || row || link).innerText || '';
    const lines = text.split('\n').map(l => l.trim()).filter(l => l.length > 0);
    const sponsorLink = (table || document).querySelector('a[href*="Senators/Member"], a[href*="mem"]');
    bills.push({
      bill_number: link.textContent.trim(),
      bill_url: link.href,
      sponsor: sponsorLink ? sponsorLink.textContent.trim() : '',
      sponsor_url: sponsorLink ? sponsorLink.href : '',
      description: lines.length > 1 ? lines[lines.length - 1] : ''
    });
  }
  return bills;
})()`

const senateBillDetailJS = `(() => {
  const byId = (suffix) => {
    const el = document.querySelector('[id$="' + suffix + '"]');
    return el ? el.textContent.trim() : '';
  };
  const d = {
    bill_number: byId('lblBillNum'), title: byId('lblBriefDesc'), sponsor: '', sponsor_url: '',
    lr_number: byId('lblLRNum'), last_action: byId('lblLastAction'),
    proposed_effective_date: byId('lblEffDate'), bill_string: byId('lblBillString'),
    calendar_status: byId('lblOnCalendar'), hearing_status: byId('lblHearing'),
    documents: [], cosponsors: [], hearings: []
  };
  const sponsor = document.querySelector('[id$="hlSponsor"]');
  if (sponsor) { d.sponsor = sponsor.textContent.trim(); d.sponsor_url = sponsor.href || ''; }
  for (const a of document.querySelectorAll('a[href$=".pdf"], a[href*=".pdf?"]')) {
    d.documents.push({ title: a.textContent.trim(), url: a.href });
  }
  const co = document.querySelector('[id$="lblCoSponsor"]');
  if (co) {
    for (const name of co.textContent.split(/[;,]\s*(?=[A-Z])/)) {
      const n = name.trim();
      if (n) d.cosponsors.push(n);
    }
  }
  const hearing = byId('lblHearingInfo');
  if (hearing) {
    const parts = hearing.split(/\s*-\s*/);
    d.hearings.push({ committee: parts[0] || '', date: parts[1] || '', time: parts[2] || '', location: parts[3] || '' });
  }
  return d;
})()`

const senateActionsJS = `(() => {
  const actions = [];
  for (const row of document.querySelectorAll('tr')) {
    const cells = row.querySelectorAll('td');
    if (cells.length >= 2) {
      const date = cells[0].textContent.trim();
      const description = cells[cells.length - 1].textContent.trim();
      if (description && /\d/.test(date)) actions.push({ date: date, description: description });
    }
  }
  return actions;
})()`
